package mempool

import (
	"github.com/cnchain/cnd/infrastructure/logger"
	"github.com/cnchain/cnd/util/panics"
)

var log = logger.RegisterSubSystem("TXMP")
var spawn = panics.GoroutineWrapperFunc(log)
