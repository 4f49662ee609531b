// Package rulefile loads YAML bundles of named rules and their test cases.
//
// A bundle looks like:
//
//	rules:
//	  - name: senior-sales
//	    description: Experienced sales staff
//	    expression: "age > 30 AND department == 'Sales'"
//	  - name: well-paid
//	    expression: "salary > 50000 OR experience > 5"
//	    enabled: false
//
//	tests:
//	  - name: senior sales rep
//	    rule: senior-sales
//	    context: {age: 35, department: Sales}
//	    expect: true
//	  - name: both rules
//	    combine: [senior-sales, well-paid]
//	    context: {age: 40, department: Sales, salary: 55000, experience: 6}
//	    expect: true
//	  - name: no department
//	    rule: senior-sales
//	    context: {age: 40}
//	    expect_error: missing_field
//
// Loading reports every problem in the file at once as an
// *errors.ErrorList, each entry with the YAML line it was found on.
// Rules default to enabled.
package rulefile
