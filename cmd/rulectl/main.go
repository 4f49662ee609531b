// rulectl compiles, stores and evaluates business rules.
//
// Rules are boolean expressions over named fields:
//
//	age > 30 AND department == 'Sales'
//	NOT contractor == true OR (salary >= 50000.0 AND level != 'junior')
//
// Usage:
//
//	# Print the tree and encoding of a rule
//	rulectl parse "age > 30 AND department == 'Sales'"
//
//	# Store a rule and evaluate it against a record
//	rulectl save senior-sales "age > 30 AND department == 'Sales'"
//	rulectl eval senior-sales --data '{"age": 35, "department": "Sales"}'
//
//	# Combine stored rules into a new one
//	rulectl combine senior-well-paid senior-sales well-paid
//
//	# Check and test a YAML rule bundle, then import it
//	rulectl lint rules.yaml
//	rulectl test rules.yaml
//	rulectl import rules.yaml
//
//	# Keep the rule registry fresh while rules change on disk
//	rulectl watch
package main

func main() {
	Execute()
}
