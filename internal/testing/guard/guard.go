package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PRICELIST_TEST_MODE") == "" {
			_ = os.Setenv("PRICELIST_TEST_MODE", "1")
		}
	})
}
