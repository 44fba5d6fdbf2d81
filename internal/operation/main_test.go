package operation

import (
	"os"
	"testing"

	"github.com/rayking12/celo-simple-donation/internal/logger"
)

func TestMain(m *testing.M) {
	logger.SetDefaultLogger(logger.NewNop())
	os.Exit(m.Run())
}
