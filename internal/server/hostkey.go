package server

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// loadOrGenerateHostKeys loads the ed25519 host key at hostKeyPath plus an
// RSA companion at hostKeyPath+"_rsa" for legacy clients, generating either
// one that is missing.
func (s *Server) loadOrGenerateHostKeys() error {
	loadKey := func(path string) (ssh.Signer, bool, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, false, fmt.Errorf("parse host key %s: %w", path, err)
		}
		return signer, true, nil
	}

	wrapRSA := func(signer ssh.Signer) ssh.Signer {
		// Newer x/crypto only advertises rsa-sha2-256/512 for RSA keys;
		// older libssh2-based clients still need plain ssh-rsa.
		if signer.PublicKey().Type() == ssh.KeyAlgoRSA {
			if as, ok := signer.(ssh.AlgorithmSigner); ok {
				wrapped, err := ssh.NewSignerWithAlgorithms(as, []string{
					ssh.KeyAlgoRSASHA512,
					ssh.KeyAlgoRSASHA256,
					ssh.KeyAlgoRSA,
				})
				if err == nil {
					return wrapped
				}
				log.Printf("SSH: warning: could not wrap RSA signer: %v", err)
			}
		}
		return signer
	}

	ensureDir := func() error {
		dir := filepath.Dir(s.hostKeyPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
		return nil
	}

	if signer, ok, err := loadKey(s.hostKeyPath); err != nil {
		return err
	} else if ok {
		s.signers = append(s.signers, signer)
		log.Printf("SSH: loaded host key from %s (%s)", s.hostKeyPath, signer.PublicKey().Type())
	} else {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate ed25519 key: %w", err)
		}
		privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return fmt.Errorf("marshal ed25519 key: %w", err)
		}
		pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})

		if err := ensureDir(); err != nil {
			return err
		}
		if err := os.WriteFile(s.hostKeyPath, pemData, 0600); err != nil {
			return fmt.Errorf("write host key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pemData)
		if err != nil {
			return fmt.Errorf("parse new ed25519 key: %w", err)
		}
		s.signers = append(s.signers, signer)
		log.Printf("SSH: generated new host key at %s (%s)", s.hostKeyPath, signer.PublicKey().Type())
	}

	rsaKeyPath := s.hostKeyPath + "_rsa"
	if signer, ok, err := loadKey(rsaKeyPath); err != nil {
		return err
	} else if ok {
		s.signers = append(s.signers, wrapRSA(signer))
		log.Printf("SSH: loaded host key from %s (%s)", rsaKeyPath, signer.PublicKey().Type())
	} else {
		priv, err := rsa.GenerateKey(rand.Reader, 4096)
		if err != nil {
			return fmt.Errorf("generate rsa key: %w", err)
		}
		privBytes := x509.MarshalPKCS1PrivateKey(priv)
		pemData := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes})

		if err := ensureDir(); err != nil {
			return err
		}
		if err := os.WriteFile(rsaKeyPath, pemData, 0600); err != nil {
			return fmt.Errorf("write rsa host key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pemData)
		if err != nil {
			return fmt.Errorf("parse new rsa key: %w", err)
		}
		s.signers = append(s.signers, wrapRSA(signer))
		log.Printf("SSH: generated new host key at %s (%s)", rsaKeyPath, signer.PublicKey().Type())
	}

	return nil
}
