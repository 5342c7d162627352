package main

import (
	"log"
	"net/http"
	"os"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/cmd/seoscan/app"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/limiter"
)

func main() {
	httpClient := &http.Client{}

	clock := limiter.NewClock()

	err := app.Run(os.Args, os.Stdout, os.Stderr, httpClient, clock)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
