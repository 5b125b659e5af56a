package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/pmork/gatekeep/internal/admin/app"
	"github.com/pmork/gatekeep/internal/keystore"
)

type keysModel struct {
	app *app.App

	width  int
	height int

	Done bool

	state keysState

	list list.Model
	err  error

	selected *keystore.Account

	form *huh.Form

	addUsername string
	addLine     string
	addSave     bool

	removeKeyID int
	removeSave  bool

	dropSave bool
}

type keysState int

const (
	keysStateAccounts keysState = iota
	keysStateKeys
	keysStateAddKey
	keysStateRemoveKey
	keysStateRemoveAccount
)

type keyItem struct {
	id    int
	title string
	desc  string
	kind  string
}

func (i keyItem) Title() string       { return i.title }
func (i keyItem) Description() string { return i.desc }
func (i keyItem) FilterValue() string { return i.title }

func newKeysModel(a *app.App) *keysModel {
	m := &keysModel{app: a, state: keysStateAccounts}
	m.reloadAccounts()
	return m
}

func (m *keysModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

func (m *keysModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
				m.err = nil
				m.state = keysStateAccounts
				m.form = nil
				m.selected = nil
				m.reloadAccounts()
			}
		}
		return nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			if m.state == keysStateAccounts {
				m.Done = true
				return nil
			}
		case "esc":
			m.back()
			return nil
		}
	}

	switch m.state {
	case keysStateAccounts:
		return m.updateAccounts(msg)
	case keysStateKeys:
		return m.updateKeys(msg)
	case keysStateAddKey, keysStateRemoveKey, keysStateRemoveAccount:
		return m.updateForm(msg)
	default:
		return nil
	}
}

func (m *keysModel) updateAccounts(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			it, ok := m.list.SelectedItem().(keyItem)
			if !ok {
				return cmd
			}
			if it.kind == "add" {
				m.startAddKey("")
				return nil
			}

			acct := keystore.Account{ID: it.id, Username: it.title}
			m.selected = &acct
			m.state = keysStateKeys
			m.reloadKeys()
			return nil
		}
	}

	return cmd
}

func (m *keysModel) updateKeys(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			it, ok := m.list.SelectedItem().(keyItem)
			if !ok {
				return cmd
			}
			switch it.kind {
			case "add":
				m.startAddKey(m.selected.Username)
			case "drop":
				m.startRemoveAccount()
			case "back":
				m.back()
			case "key":
				m.startRemoveKey(it.id, it.title)
			}
			return nil
		}
	}

	return cmd
}

func (m *keysModel) updateForm(msg tea.Msg) tea.Cmd {
	if m.form == nil {
		m.err = fmt.Errorf("internal error: form not initialized")
		return nil
	}
	var cmd tea.Cmd
	updated, cmd := m.form.Update(msg)
	f, ok := updated.(*huh.Form)
	if !ok {
		m.err = fmt.Errorf("internal error: unexpected form model type")
		return nil
	}
	m.form = f
	if m.form.State == huh.StateCompleted {
		switch m.state {
		case keysStateAddKey:
			if m.addSave {
				if _, err := m.app.Keys.AddKey(m.addUsername, m.addLine); err != nil {
					m.err = err
					return nil
				}
			}
			m.form = nil
			if m.selected != nil {
				m.state = keysStateKeys
				m.reloadKeys()
			} else {
				m.state = keysStateAccounts
				m.reloadAccounts()
			}
		case keysStateRemoveKey:
			if m.removeSave {
				if err := m.app.Keys.RemoveKey(m.removeKeyID); err != nil {
					m.err = err
					return nil
				}
			}
			m.form = nil
			m.state = keysStateKeys
			m.reloadKeys()
		case keysStateRemoveAccount:
			if m.dropSave && m.selected != nil {
				if err := m.app.Keys.RemoveAccount(m.selected.Username); err != nil {
					m.err = err
					return nil
				}
				m.selected = nil
				m.form = nil
				m.state = keysStateAccounts
				m.reloadAccounts()
				return nil
			}
			m.form = nil
			m.state = keysStateKeys
			m.reloadKeys()
		}
		return nil
	}
	return cmd
}

func (m *keysModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Key store error: %v\n\nPress Enter/Esc to go back.", m.err)
	}

	switch m.state {
	case keysStateAccounts:
		m.list.Title = "Accounts"
		return m.list.View() + "\n(q to quit, enter to select)"
	case keysStateKeys:
		if m.selected == nil {
			return "No account selected\n\n(esc to go back)"
		}
		header := fmt.Sprintf("Account: %s\n\n", m.selected.Username)
		m.list.Title = "Stored keys"
		return header + m.list.View() + "\n(enter on a key to remove it, esc to go back)"
	default:
		return m.form.View() + "\n\n(esc to go back)"
	}
}

func (m *keysModel) reloadAccounts() {
	accounts, err := m.app.Keys.ListAccounts()
	if err != nil {
		m.err = err
		return
	}

	items := make([]list.Item, 0, len(accounts)+1)
	items = append(items, keyItem{title: "+ Add key", desc: "Store a key for any account", kind: "add"})
	for _, a := range accounts {
		desc := fmt.Sprintf("%d key(s)", a.KeyCount)
		items = append(items, keyItem{id: a.ID, title: a.Username, desc: desc, kind: "account"})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
	m.list.Title = "Accounts"
}

func (m *keysModel) reloadKeys() {
	if m.selected == nil {
		return
	}
	keys, err := m.app.Keys.Keys(m.selected.Username)
	if err != nil {
		m.err = err
		return
	}

	items := make([]list.Item, 0, len(keys)+3)
	items = append(items, keyItem{title: "+ Add key", desc: "Store another key for this account", kind: "add"})
	for _, k := range keys {
		title := k.Algorithm
		if k.Comment != "" {
			title = fmt.Sprintf("%s (%s)", k.Algorithm, k.Comment)
		}
		desc := fmt.Sprintf("added %s", k.CreatedAt.Format("2006-01-02"))
		items = append(items, keyItem{id: k.ID, title: title, desc: desc, kind: "key"})
	}
	items = append(items,
		keyItem{title: "Remove account", desc: "Delete the account and all of its keys", kind: "drop"},
		keyItem{title: "Back", desc: "Return to the accounts list", kind: "back"},
	)

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-4)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(false)
	m.list.SetShowHelp(true)
	m.list.Title = "Stored keys"
}

func (m *keysModel) startAddKey(username string) {
	m.state = keysStateAddKey
	m.addUsername = username
	m.addLine = ""
	m.addSave = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Username").Value(&m.addUsername).Validate(nonEmpty("username")),
			huh.NewText().Title("Key line (authorized_keys format)").Value(&m.addLine).Validate(nonEmpty("key line")),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Store key?").Value(&m.addSave),
		),
	)
}

func (m *keysModel) startRemoveKey(id int, title string) {
	m.state = keysStateRemoveKey
	m.removeKeyID = id
	m.removeSave = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title(fmt.Sprintf("Remove %s?", title)).Value(&m.removeSave),
		),
	)
}

func (m *keysModel) startRemoveAccount() {
	m.state = keysStateRemoveAccount
	m.dropSave = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title(fmt.Sprintf("Remove account %q and all of its keys?", m.selected.Username)).Value(&m.dropSave),
		),
	)
}

func (m *keysModel) back() {
	switch m.state {
	case keysStateAccounts:
		m.Done = true
	case keysStateKeys:
		m.state = keysStateAccounts
		m.selected = nil
		m.form = nil
		m.reloadAccounts()
	default:
		m.form = nil
		if m.selected != nil {
			m.state = keysStateKeys
			m.reloadKeys()
		} else {
			m.state = keysStateAccounts
			m.reloadAccounts()
		}
	}
}

func nonEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
