package main

import "github.com/CrowderSoup/studyboard/cmd"

func main() {
	cmd.Execute()
}
