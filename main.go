package main

import "github.com/chrisdamba/menumanager/cmd"

func main() {
	cmd.Execute()
}
