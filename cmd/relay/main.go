// Command relay plans a prompt into tasks and drives them through coding
// agent backends.
package main

func main() {
	Execute()
}
