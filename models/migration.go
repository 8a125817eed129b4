package models

import (
	"log"

	"github.com/mmdatafocus/kasmoni_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Bank{}, &Member{}, &Group{}, &Slot{},
		&Payment{}, &PaymentAudit{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
