package main

import "github.com/kursadbilgin/reservation-notifier/cmd"

func main() {
	cmd.Execute()
}
