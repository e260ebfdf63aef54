package main

import (
	"log"

	"github.com/iyedjb/edutokudte-sub000/internal/application/startup"
)

func main() {
	if err := startup.Initialize(); err != nil {
		log.Fatalf("EduTok gateway failed: %v", err)
	}
}
