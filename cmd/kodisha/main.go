// Package main is the entry point for the kodisha subscription engine.
package main

func main() {
	Execute()
}
