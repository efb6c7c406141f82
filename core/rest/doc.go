/*
Package rest implements the configurable JSON:API backend

The backend manages a set of relational resource classes behind a storage
contract and provides an auto-generated RESTful API for them, speaking the
JSON:API 1.0 envelope.

Configuration

The configuration is done entirely via JSON. It consists of classes with
attributes, relationships and remote methods.

Example:
  {
	"classes": [
	  {
		"class": "user",
		"attributes": ["name", "email"],
		"id_type": "uuid",
		"relationships": [
		  {
			"key": "books_read",
			"class": "book",
			"direction": "ONE_TO_MANY"
		  }
		],
		"methods": [
		  {
			"method": "send_mail",
			"public": true
		  }
		]
	  },
	  {
		"class": "book",
		"attributes": ["title"],
		"relationships": [
		  {
			"key": "reader",
			"class": "user",
			"direction": "MANY_TO_ONE"
		  }
		]
	  }
	]
  }

This configuration creates the following REST routes:
	GET /users
	POST /users
	GET /users/{user_id}
	PATCH /users/{user_id}
	POST /users/{user_id}
	DELETE /users/{user_id}
	GET /users/{user_id}/books_read
	PATCH /users/{user_id}/books_read
	POST /users/{user_id}/books_read
	DELETE /users/{user_id}/books_read/{book_id}
	GET /users/send_mail
	POST /users/send_mail
	GET /users/{user_id}/send_mail
	POST /users/{user_id}/send_mail
	GET /books
	...

Documents

All responses are JSON:API documents. The data member is always present,
even when null or empty; meta, links, errors and included appear only when
they carry something. Failed requests respond with the uniform error
envelope, a single errors array whose first element carries the detail
message, and never contain a data member.

Query Parameters and Pagination

The GET request on collections supports filtering, sorting, pagination and
inclusion of related resources:
	?filter[col]=a,b      keeps instances whose col is a or b; filters on
	                      distinct columns combine as a union
	?sort=col1,-col2      sorts by col1 ascending, ties by col2 descending
	?page[offset]=n       the page window offset
	?page[limit]=n        the page window size
	?include=rel.nested   adds related resources to the included member;
	                      the sentinel +all includes every declared
	                      relationship, expanded one more level

The response meta carries the effective page limit and the total count, and
the links member carries self plus the first, last, prev and next page
links, each omitted when it would reproduce the current page.

Relationships

Relationship routes read and mutate resource linkage. The document's meta
states the direction, TOONE or TOMANY. A PATCH with an object assigns the
single peer of a to-one relationship, a PATCH with a list replaces the
members of a to-many relationship, and {"data": null} clears either. A POST
appends to a to-many relationship, skipping unresolvable items. A DELETE
removes one child and is idempotent; removing a child that is not a member
merely logs a warning.

Remote Methods

Classes can declare named methods. Declared methods get sibling routes next
to the collection and item routes; invoking them calls the callable bound
with HandleMethod, with arguments merged from the query string and the
body's meta.args object. Only methods declared public can be invoked.

Transactions

Every request runs inside a single storage session. The session commits
after the handler returns successfully and before the response is written;
any error rolls the session back and translates into the error envelope.
*/
package rest
