// Package policy evaluates a Lua-scripted multi-factor rule. A script
// defines satisfied(user, factors) and decides, per login attempt, whether
// the factors verified so far are enough to grant the identity.
package policy

import (
	"fmt"
	"log"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/pmork/gatekeep/internal/creds"
)

// Policy wraps a Lua state holding a loaded policy script.
type Policy struct {
	mu sync.Mutex
	L  *lua.LState
}

// Load runs a policy script and checks that it defines a global
// satisfied(user, factors) function. factors arrives as an array of
// credential kind names, e.g. {"password", "publickey"}.
func Load(path string) (*Policy, error) {
	L := lua.NewState(lua.Options{
		CallStackSize: 120,
		RegistrySize:  120 * 20,
	})
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("load policy %s: %w", path, err)
	}
	if _, ok := L.GetGlobal("satisfied").(*lua.LFunction); !ok {
		L.Close()
		return nil, fmt.Errorf("policy %s: no satisfied(user, factors) function", path)
	}
	return &Policy{L: L}, nil
}

// Close shuts down the Lua state.
func (p *Policy) Close() {
	p.L.Close()
}

// Satisfied reports the script's verdict for username given the satisfied
// credential kinds. The Lua state is not goroutine safe and concurrent
// attempts share one Policy, so calls serialize on a mutex. A script error
// denies; it never grants.
func (p *Policy) Satisfied(username string, kinds []creds.Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	factors := p.L.NewTable()
	for _, k := range kinds {
		factors.Append(lua.LString(string(k)))
	}

	if err := p.L.CallByParam(lua.P{
		Fn:      p.L.GetGlobal("satisfied"),
		NRet:    1,
		Protect: true,
	}, lua.LString(username), factors); err != nil {
		log.Printf("policy: satisfied(%q): %v", username, err)
		return false
	}

	ret := p.L.Get(-1)
	p.L.Pop(1)
	return lua.LVAsBool(ret)
}
