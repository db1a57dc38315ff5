package testutils

import (
	"testing"

	"github.com/cnchain/cnd/domain/chaincfg"
)

// ForAllNets runs the passed testFunc with all available networks. Every
// run gets its own copy of the params.
func ForAllNets(t *testing.T, testFunc func(*testing.T, *chaincfg.Params)) {
	allParams := []chaincfg.Params{
		chaincfg.MainnetParams,
		chaincfg.TestnetParams,
		chaincfg.SimnetParams,
		chaincfg.DevnetParams,
	}

	for _, params := range allParams {
		params := params
		t.Run(params.Name, func(t *testing.T) {
			t.Parallel()
			t.Logf("Running test for %s", params.Name)
			testFunc(t, &params)
		})
	}
}
