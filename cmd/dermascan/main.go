package main

import "github.com/MeKo-Tech/dermascan/cmd/dermascan/cmd"

func main() {
	cmd.Execute()
}
