package identify_test

import (
	"testing"

	"github.com/okian/breedid/pkg/logger"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
	goleak.VerifyTestMain(m)
}
