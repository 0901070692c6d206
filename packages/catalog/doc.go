// Package catalog loads projects, environments and test cases from a YAML
// file and serves them to the engine.
//
// A catalog file looks like:
//
//	projects:
//	  - id: 1
//	    name: users-api
//	    environments:
//	      - id: 1
//	        name: Local
//	        code: local
//	        base_url: http://localhost:8080
//	        headers:
//	          Authorization: Bearer {{token}}
//	        variables:
//	          token: dev-token
//	        is_default: true
//	    test_cases:
//	      - id: 1
//	        name: get user
//	        method: GET
//	        url: /users/{id}
//	        path_params:
//	          id: 42
//	        assertions:
//	          - source: status_code
//	            operator: eq
//	            value: 200
//	          - source: body
//	            expression: $.data.name
//	            operator: contains
//	            value: Ada
//
// Documents are checked against embedded JSON Schemas before decoding.
// Environment and test case ids are unique across the whole file, and a
// project may flag at most one environment as default.
package catalog
