package main

import "github.com/skypro1111/forkstream-receiver/cmd"

func main() {
	cmd.Execute()
}
