package main

import "github.com/eduvision/attendance/cmd"

func main() {
	cmd.Execute()
}
