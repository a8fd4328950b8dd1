package integration

import (
	"fmt"
	"time"
)

// Password meeting the policy: at least 8 chars with upper, lower, digit.
const testPassword = "TestPassword123"

// TestUser generates unique credentials so tests never collide on the
// email unique index.
func TestUser(suffix string) (email, password string) {
	email = fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
	password = testPassword
	return
}
