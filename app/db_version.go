package app

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// currentDatabaseVersion tracks the layout of the data directory. The
// segment records carry their own scheme version inside the database.
const currentDatabaseVersion = 1

func checkDatabaseVersion(dbPath string) (doesVersionFileExist bool, err error) {
	dbVersionFileName := versionFilePath(dbPath)
	versionBytes, err := os.ReadFile(dbVersionFileName)
	if err != nil {
		if os.IsNotExist(err) { // If version file doesn't exist, we assume that the database is new
			return false, nil
		}
		return false, err
	}

	databaseVersion, err := strconv.Atoi(string(versionBytes))
	if err != nil {
		return true, err
	}

	if databaseVersion != currentDatabaseVersion {
		return true, errors.Errorf("Invalid database version %d. Expected version: %d", databaseVersion, currentDatabaseVersion)
	}

	return true, nil
}

func createDatabaseVersionFile(dbPath string) error {
	dbVersionFileName := versionFilePath(dbPath)

	versionFile, err := os.Create(dbVersionFileName)
	if err != nil {
		return err
	}
	defer versionFile.Close()

	versionString := strconv.Itoa(currentDatabaseVersion)
	_, err = versionFile.Write([]byte(versionString))
	return err
}

func versionFilePath(dbPath string) string {
	dbVersionFileName := filepath.Join(dbPath, "version")
	return dbVersionFileName
}
