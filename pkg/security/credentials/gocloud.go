package credentials

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"gocloud.dev/secrets"
	// Keeper backends are opt-in; import the one your deployment uses:
	//   _ "gocloud.dev/secrets/awskms"
	//   _ "gocloud.dev/secrets/gcpkms"
	//   _ "gocloud.dev/secrets/azurekeyvault"
	//   _ "gocloud.dev/secrets/hashivault"
	//   _ "gocloud.dev/secrets/localsecrets"
	_ "gocloud.dev/secrets/localsecrets" // base64key:// for local and test use
)

// encryptedPrefix marks a value as keeper-encrypted ciphertext.
const encryptedPrefix = "encrypted:"

// Keeper resolves "encrypted:BASE64" values by decrypting them with a
// gocloud secrets keeper. Other values pass through.
type Keeper struct {
	keeper *secrets.Keeper
}

// NewKeeper opens a keeper from its URL, e.g.
// "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4=" for a
// local key or a cloud KMS URL in production.
func NewKeeper(ctx context.Context, keeperURL string) (*Keeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keeperURL)
	if err != nil {
		return nil, fmt.Errorf("open secrets keeper: %w", err)
	}
	return &Keeper{keeper: keeper}, nil
}

func (k *Keeper) Resolve(ctx context.Context, value string) (string, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode encrypted value: %w", err)
	}
	plaintext, err := k.keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("decrypt value: %w", err)
	}
	return string(plaintext), nil
}

func (k *Keeper) Close() error {
	return k.keeper.Close()
}

// Encrypt produces an "encrypted:BASE64" value for storage in
// configuration, the inverse of Resolve.
func (k *Keeper) Encrypt(ctx context.Context, plaintext string) (string, error) {
	ciphertext, err := k.keeper.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("encrypt value: %w", err)
	}
	return encryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}
