package main

import "github.com/AlyBadawy/Securial-sub000/cmd/securial/cmd"

func main() {
	cmd.Execute()
}
