package persistedsegment

import (
	"github.com/cnchain/cnd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("SGMT")
