package cmd

import (
	"fmt"
)

const banner = `
  _____                      _       _
 / ____|                    (_)     | |
| (___   ___  ___ _   _ _ __ _  __ _| |
 \___ \ / _ \/ __| | | | '__| |/ _` + "`" + ` | |
 ____) |  __/ (__| |_| | |  | | (_| | |
|_____/ \___|\___|\__,_|_|  |_|\__,_|_|

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Session & Authentication Service - Version %s\x1b[0m\n\n", Version)
}
