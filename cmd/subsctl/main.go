package main

import (
	"os"

	"daily_video_bot/internal/infra/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal(err)
	}
}
