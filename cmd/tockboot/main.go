// Command tockboot talks to boards running the Tock serial bootloader.
package main

func main() {
	Execute()
}
