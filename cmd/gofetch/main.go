package main

import "github.com/dbsmedya/gofetch/cmd/gofetch/cmd"

func main() {
	cmd.Execute()
}
