package models

import (
	"log"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &User{},
		&Warehouse{}, &Zone{}, &Rack{}, &Shelf{},
		&Product{}, &Placement{},
		&InventoryLog{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
