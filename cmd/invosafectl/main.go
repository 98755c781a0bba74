// Command invosafectl drives the InvoSafe API from the command line.
package main

func main() {
	Execute()
}
