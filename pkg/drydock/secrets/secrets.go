// Package secrets generates and stores the deployment's credentials: the
// database password, the admin password, and the application secret key.
//
// Credentials are minted once, at first install, and never regenerated
// automatically. Regenerating on a re-run would invalidate a running
// deployment's stored data, so an existing file always wins; regeneration
// requires the operator to delete the files on purpose.
package secrets

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Env file keys consumed by the compose layer's ${VAR} placeholders.
const (
	KeyDBPassword    = "DB_PASSWORD"
	KeyAdminPassword = "ADMIN_PASSWORD"
	KeyAppSecret     = "APP_SECRET_KEY"
)

const (
	passwordLength  = 24
	appSecretLength = 48

	passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ErrIncomplete is returned when an existing secrets file is missing one
// of the required keys. Partial files are never regenerated over: the
// present keys may guard live data.
var ErrIncomplete = errors.New("secrets file incomplete")

// Secrets holds the three generated credentials.
type Secrets struct {
	DBPassword    string
	AdminPassword string
	AppSecretKey  string
}

// Files names where secrets live on the target host.
type Files struct {
	// EnvPath is the machine-consumed env file next to the compose spec.
	EnvPath string

	// NotePath is the operator's copy, same format plus a warning header.
	NotePath string
}

// Ensure returns the deployment's secrets, generating and writing them on
// first install. The returned bool reports whether generation happened.
// When either file already exists its values are reused as-is and only a
// missing counterpart is restored; an existing file is never rewritten.
func Ensure(f Files) (Secrets, bool, error) {
	for _, path := range []string{f.EnvPath, f.NotePath} {
		s, err := load(path)
		if err == nil {
			return s, false, restoreCounterparts(f, s)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Secrets{}, false, fmt.Errorf("read existing secrets %s: %w", path, err)
		}
	}

	s, err := generate()
	if err != nil {
		return Secrets{}, false, err
	}
	if err := writeAll(f, s); err != nil {
		return Secrets{}, false, err
	}
	return s, true, nil
}

// load reads secrets from a godotenv-format file. A missing file returns
// os.ErrNotExist; a present file missing keys returns ErrIncomplete.
func load(path string) (Secrets, error) {
	if _, err := os.Stat(path); err != nil {
		return Secrets{}, err
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return Secrets{}, fmt.Errorf("parse: %w", err)
	}

	s := Secrets{
		DBPassword:    values[KeyDBPassword],
		AdminPassword: values[KeyAdminPassword],
		AppSecretKey:  values[KeyAppSecret],
	}
	if s.DBPassword == "" || s.AdminPassword == "" || s.AppSecretKey == "" {
		return Secrets{}, fmt.Errorf("%w: %s", ErrIncomplete, path)
	}
	return s, nil
}

func generate() (Secrets, error) {
	db, err := randomString(passwordLength)
	if err != nil {
		return Secrets{}, fmt.Errorf("generate database password: %w", err)
	}
	admin, err := randomString(passwordLength)
	if err != nil {
		return Secrets{}, fmt.Errorf("generate admin password: %w", err)
	}
	app, err := randomString(appSecretLength)
	if err != nil {
		return Secrets{}, fmt.Errorf("generate application secret: %w", err)
	}

	return Secrets{
		DBPassword:    db,
		AdminPassword: admin,
		AppSecretKey:  app,
	}, nil
}

// restoreCounterparts writes whichever of the two files is missing, using
// the already-loaded values. Present files are left untouched.
func restoreCounterparts(f Files, s Secrets) error {
	for path, content := range map[string]func(Secrets) (string, error){
		f.EnvPath:  envContent,
		f.NotePath: noteContent,
	} {
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		text, err := content(s)
		if err != nil {
			return err
		}
		if err := writeRestricted(path, text); err != nil {
			return err
		}
	}
	return nil
}

func writeAll(f Files, s Secrets) error {
	env, err := envContent(s)
	if err != nil {
		return err
	}
	note, err := noteContent(s)
	if err != nil {
		return err
	}
	if err := writeRestricted(f.EnvPath, env); err != nil {
		return err
	}
	return writeRestricted(f.NotePath, note)
}

func envContent(s Secrets) (string, error) {
	env, err := godotenv.Marshal(map[string]string{
		KeyDBPassword:    s.DBPassword,
		KeyAdminPassword: s.AdminPassword,
		KeyAppSecret:     s.AppSecretKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal secrets: %w", err)
	}
	return env + "\n", nil
}

func noteContent(s Secrets) (string, error) {
	env, err := envContent(s)
	if err != nil {
		return "", err
	}
	return "# Deployment credentials. Operator eyes only; mode must stay 0600.\n" +
		"# Deleting this file and the compose env file forces regeneration,\n" +
		"# which invalidates all data the running stack has stored.\n" +
		env, nil
}

func writeRestricted(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create secrets directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// randomString draws length characters from the password alphabet using
// crypto/rand, one unbiased rand.Int per character.
func randomString(length int) (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
