package blockvalidator

import (
	"github.com/cnchain/cnd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("BLVA")
