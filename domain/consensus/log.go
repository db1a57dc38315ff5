package consensus

import (
	"github.com/cnchain/cnd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("CNSS")
