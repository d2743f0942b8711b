package auth

import (
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"strconv"
	"strings"

	"github.com/yamdb/apiserver/types"
	"golang.org/x/crypto/blake2b"
)

const codeBytes = 20

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// CodeGenerator derives confirmation codes from an account's current state.
// Nothing is stored: a code stays valid until any field it covers changes.
type CodeGenerator struct {
	key []byte
}

// NewCodeGenerator returns a generator keyed with secret.
func NewCodeGenerator(secret string) (*CodeGenerator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("confirmation secret is required")
	}
	// blake2b keys are capped at 64 bytes.
	key := blake2b.Sum256([]byte(secret))
	return &CodeGenerator{key: key[:]}, nil
}

// Generate returns the code for the account as it is now.
func (g *CodeGenerator) Generate(user types.User) string {
	mac, err := blake2b.New256(g.key)
	if err != nil {
		// Only reachable with an oversized key, which NewCodeGenerator prevents.
		panic(err)
	}
	_, _ = mac.Write([]byte(stateOf(user)))
	sum := mac.Sum(nil)
	return codeEncoding.EncodeToString(sum[:codeBytes])
}

// Verify reports whether code matches the account's current state.
func (g *CodeGenerator) Verify(user types.User, code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return false
	}
	expected := g.Generate(user)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1
}

func stateOf(user types.User) string {
	fields := []string{
		strconv.Itoa(user.ID),
		user.Username,
		user.Email,
		string(user.Role),
		strconv.FormatBool(user.IsStaff),
		user.Bio,
		user.FirstName,
		user.LastName,
		strconv.FormatInt(user.UpdatedAt.UnixMicro(), 10),
	}
	return strings.Join(fields, "\x1f")
}
