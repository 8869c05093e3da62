package healthchecker

import (
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/database"
)

// CheckDB opens a fresh connection; NewDatabase pings before returning.
func CheckDB() error {
	dbConn, err := database.NewDatabase()
	if err != nil {
		return err
	}

	database.Close(dbConn)

	return nil
}
