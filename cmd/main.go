package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/sagacore/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start(context.Background())

	fmt.Printf("Admin API listening on :%s\n", a.Env.AdminPort)
	if err := a.Run(); err != nil {
		a.Log.Warn("Admin API server stopped", "error", err)
	}
}
