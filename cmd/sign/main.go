// Command sign signs ed25519 authentication challenges with the editor's
// private key. With -server it fetches the current challenge, signs it and
// prints the Authorization header value; otherwise it reads challenges from stdin.
package main

import (
	"bufio"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/debemdeboas/wikidraft/internal/config"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	outputStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func loadPrivateKey(filename string) (ed25519.PrivateKey, error) {
	privKeyBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(privKeyBytes)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	privKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	edPriv, ok := privKey.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("not an Ed25519 private key")
	}
	return edPriv, nil
}

func signChallenge(key ed25519.PrivateKey, challengeB64 string) (string, error) {
	challenge, err := base64.StdEncoding.DecodeString(strings.TrimSpace(challengeB64))
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, challenge)), nil
}

func fetchChallenge(client *http.Client, server string) (string, error) {
	resp, err := client.Get(strings.TrimSuffix(server, "/") + config.PathAuthChallenge)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("challenge request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out struct {
		Challenge string `json:"challenge"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode challenge: %w", err)
	}
	return out.Challenge, nil
}

func interactive(key ed25519.PrivateKey, in io.Reader) error {
	fmt.Println("Enter challenges one by one. Type 'quit' to exit.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Print(promptStyle.Render("Enter challenge (base64): "))
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" {
			break
		}

		sig, err := signChallenge(key, line)
		if err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			continue
		}
		fmt.Println(outputStyle.Render("Signature: " + sig))
	}
	return scanner.Err()
}

func main() {
	keyPath := flag.String("key", "privkey.pem", "PEM encoded PKCS#8 ed25519 private key")
	server := flag.String("server", "", "fetch the challenge from this wiki instead of reading stdin")
	flag.Parse()

	key, err := loadPrivateKey(*keyPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error loading private key: "+err.Error()))
		os.Exit(1)
	}

	if *server == "" {
		if err := interactive(key, os.Stdin); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error reading input: "+err.Error()))
			os.Exit(1)
		}
		return
	}

	challenge, err := fetchChallenge(&http.Client{Timeout: 10 * time.Second}, *server)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
	sig, err := signChallenge(key, challenge)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
	fmt.Println(sig)
}
