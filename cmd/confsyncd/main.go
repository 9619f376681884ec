package main

import "confsync/server"

func main() {
	server.Main()
}
