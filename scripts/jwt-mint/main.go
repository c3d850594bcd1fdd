// Command jwt-mint signs a development bearer token carrying the plan and
// roles claims the server reads. With -generate it first writes a fresh RSA
// key pair.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"estate-graphql/internal/auth"

	"github.com/golang-jwt/jwt/v5"
)

type tokenOptions struct {
	issuer   string
	audience string
	subject  string
	plan     string
	roles    string
	expires  time.Duration
}

func main() {
	currentUser, err := user.Current()
	if err != nil {
		currentUser = &user.User{Username: "user-1"}
	}

	var opts tokenOptions
	privateKeyPath := flag.String("key", ".auth/jwt_private.pem", "Path to RSA private key (PEM)")
	generate := flag.Bool("generate", false, "Write a new key pair next to -key when it does not exist")
	kid := flag.String("kid", "local-key", "JWT key ID")
	flag.StringVar(&opts.issuer, "issuer", "https://localhost:9000", "JWT issuer")
	flag.StringVar(&opts.audience, "audience", "estate-graphql", "JWT audience (comma-separated)")
	flag.StringVar(&opts.subject, "subject", currentUser.Username, "JWT subject")
	flag.StringVar(&opts.plan, "plan", "", "Plan claim, e.g. premium (optional)")
	flag.StringVar(&opts.roles, "roles", "", "Roles claim (comma-separated, optional)")
	flag.DurationVar(&opts.expires, "expires", time.Hour, "Token lifetime (e.g. 1h)")
	flag.Parse()

	if *generate {
		if err := ensureKeyPair(*privateKeyPath); err != nil {
			exitErr(err)
		}
	}

	privateKey, err := loadPrivateKey(*privateKeyPath)
	if err != nil {
		exitErr(err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, buildClaims(opts, time.Now()))
	token.Header["kid"] = *kid
	signed, err := token.SignedString(privateKey)
	if err != nil {
		exitErr(err)
	}

	fmt.Println(signed)
}

func buildClaims(opts tokenOptions, now time.Time) jwt.MapClaims {
	claims := jwt.MapClaims{
		"iss": opts.issuer,
		"sub": opts.subject,
		"aud": splitList(opts.audience),
		"iat": now.Unix(),
		"exp": now.Add(opts.expires).Unix(),
		"nbf": now.Add(-1 * time.Minute).Unix(),
	}
	if opts.plan != "" {
		claims[auth.PlanClaim] = opts.plan
	}
	if roles := splitList(opts.roles); len(roles) > 0 {
		claims[auth.RolesClaim] = roles
	}
	return claims
}

// ensureKeyPair writes jwt_private.pem at privatePath and jwt_public.pem
// beside it unless the private key already exists.
func ensureKeyPair(privatePath string) error {
	if _, err := os.Stat(privatePath); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	dir := filepath.Dir(privatePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create dir: %w", err)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	if err := writePEM(privatePath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(privateKey), 0o600); err != nil {
		return err
	}

	publicBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}
	return writePEM(filepath.Join(dir, "jwt_public.pem"), "PUBLIC KEY", publicBytes, 0o644)
}

func writePEM(path, pemType string, bytes []byte, perm os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: bytes})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode private key pem")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type")
	}
	return rsaKey, nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func splitList(value string) []string {
	raw := strings.Split(value, ",")
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
