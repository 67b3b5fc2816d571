package main

import (
	_ "github.com/arsyadal/fastblog/src/admintools"
	_ "github.com/arsyadal/fastblog/src/devs3"
	_ "github.com/arsyadal/fastblog/src/importer"
	_ "github.com/arsyadal/fastblog/src/migration"
	"github.com/arsyadal/fastblog/src/website"
)

func main() {
	website.WebsiteCommand.Execute()
}
