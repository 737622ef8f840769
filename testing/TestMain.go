package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PRICELIST_TEST_MODE", "1")
		if os.Getenv("OPENAI_BASE_URL") == "" {
			_ = os.Setenv("OPENAI_BASE_URL", "http://127.0.0.1:0")
		}
		if os.Getenv("ANTHROPIC_BASE_URL") == "" {
			_ = os.Setenv("ANTHROPIC_BASE_URL", "http://127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
