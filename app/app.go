package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cnchain/cnd/infrastructure/config"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/cnchain/cnd/infrastructure/db/database/ldb"
	"github.com/cnchain/cnd/infrastructure/logger"
	"github.com/cnchain/cnd/infrastructure/os/signal"
	"github.com/cnchain/cnd/util/panics"
	"github.com/cnchain/cnd/util/profiling"
	"github.com/cnchain/cnd/version"
	"github.com/pkg/errors"
)

const databaseDirname = "chain"

type cndApp struct {
	cfg *config.Config
}

// StartApp starts the cnd app, and blocks until it finishes running
func StartApp() error {
	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if cfg.ShowSubsystems() {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		return nil
	}
	logger.InitLog(cfg.LogFile, cfg.ErrLogFile)
	defer logger.BackendLog.Close()
	defer panics.HandlePanic(log, "MAIN", nil)

	app := &cndApp{cfg: cfg}
	return app.main(nil)
}

func (app *cndApp) main(startedChan chan<- struct{}) error {
	// Get a channel that will be closed when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// another subsystem such as the RPC server.
	interrupt := signal.InterruptListener()
	defer log.Info("Shutdown complete")

	// Show version at startup.
	log.Infof("Version %s", version.Version())

	// Enable http profiling server if requested.
	if app.cfg.Profile != "" {
		profiling.Start(app.cfg.Profile, log)
	}

	// Return now if an interrupt signal was triggered.
	if signal.InterruptRequested(interrupt) {
		return nil
	}

	// Open the database
	databaseDir := filepath.Join(app.cfg.DataDir, databaseDirname)
	db, err := openDB(databaseDir, app.cfg.DatabaseCacheMiB)
	if err != nil {
		log.Errorf("Loading database failed: %+v", err)
		return err
	}

	defer func() {
		log.Infof("Gracefully shutting down the database...")
		err := db.Close()
		if err != nil {
			log.Errorf("Failed to close the database: %s", err)
		}
	}()

	// Return now if an interrupt signal was triggered.
	if signal.InterruptRequested(interrupt) {
		return nil
	}

	// Create componentManager and start it.
	componentManager, err := NewComponentManager(app.cfg, db)
	if err != nil {
		log.Errorf("Unable to start cnd: %+v", err)
		return err
	}

	defer func() {
		log.Infof("Gracefully shutting down cnd...")

		shutdownDone := make(chan struct{})
		go func() {
			componentManager.Stop()
			shutdownDone <- struct{}{}
		}()

		<-shutdownDone
		log.Info("Cnd shutdown complete")
	}()

	componentManager.Start()

	if startedChan != nil {
		startedChan <- struct{}{}
	}

	log.Infof("Chain %s at block %d %s", app.cfg.NetParams().Name,
		componentManager.Consensus().GetTopBlockIndex(), componentManager.Consensus().GetTopBlockHash())

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems such as the RPC
	// server.
	<-interrupt
	return nil
}

func openDB(dbPath string, cacheSizeMiB int) (database.Database, error) {
	err := os.MkdirAll(dbPath, 0700)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create the database directory %s", dbPath)
	}
	versionExists, err := checkDatabaseVersion(dbPath)
	if err != nil {
		return nil, err
	}

	log.Infof("Loading database from '%s'", dbPath)
	db, err := ldb.NewLevelDB(dbPath, cacheSizeMiB)
	if err != nil {
		return nil, err
	}

	if !versionExists {
		err = createDatabaseVersionFile(dbPath)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
