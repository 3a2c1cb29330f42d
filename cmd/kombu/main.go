// Command kombu publishes to and consumes from AMQP destinations through the compat adapters.
package main

func main() {
	Execute()
}
