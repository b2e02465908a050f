package main

import (
	"os"

	_ "git.handmade.network/hmn/postmerge/src/admintools"
	_ "git.handmade.network/hmn/postmerge/src/migration"
	"git.handmade.network/hmn/postmerge/src/website"
)

func main() {
	if err := website.WebsiteCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
