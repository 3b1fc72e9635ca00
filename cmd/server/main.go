package main

import (
	"os"

	"openchat/backend/internal/app"
)

// @title           OpenChat Backend API
// @version         1.0
// @description     Multi-turn AI chat backend with streaming generations and
// @description     cooperative cancellation.
// @BasePath        /api
func main() {
	os.Exit(app.Run())
}
