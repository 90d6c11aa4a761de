package validation

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CheckPasswordHash verifies that hash is a bcrypt hash the live view can
// compare passwords against. An empty hash means the live view is open.
func CheckPasswordHash(hash string) error {
	if hash == "" {
		return nil
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return fmt.Errorf("IRIMAGER_LIVEVIEW_PASSWORD_HASH is not a bcrypt hash: %w", err)
	}
	if cost < bcrypt.DefaultCost {
		return fmt.Errorf("bcrypt cost %d is below the minimum of %d", cost, bcrypt.DefaultCost)
	}
	return nil
}
