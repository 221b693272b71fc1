// Package ddbschema derives schemas that convert Go structs to and from DynamoDB
// attribute maps and describe their key layout.
//
// Fields are configured with the dynamo struct tag:
//
//	type Person struct {
//		ID      string    `dynamo:"id,pk"`
//		Name    string    `dynamo:"name,index-pk=search|names"`
//		Born    time.Time `dynamo:"dob,index-sk=search,converter=unixtime"`
//		Address Address   `dynamo:",flatten"`
//		Lives   int       `dynamo:"lives,default"`
//		Tags    []string  `dynamo:"tags,set"`
//		Cached  string    `dynamo:"-"`
//	}
//
// The tag name is the attribute name; it defaults to the Go field name, or to the
// name in a dynamodbav tag. Options:
//
//	pk, sk                  primary partition and sort key
//	index-pk=a|b, index-sk  partition and sort key of the named secondary indexes
//	converter=name          use a converter registered with RegisterNamed
//	flatten                 store the fields of a nested struct in the parent item
//	default                 the field may be missing when decoding
//	set                     store a slice as a string, number or binary set
//
// DynamoDB has no empty sets, so an empty set field is written as NULL and
// decodes as a nil slice or map.
//
// Embedded structs are flattened. Fields missing from a decoded item keep the value
// returned by the type's Defaults method when it is non-zero or the field is tagged
// default; missing pointers, slices and maps are nil; any other missing field is an
// error.
//
// Nested structs are stored as maps through their own schema, which makes
// self-referential types such as linked lists work. An empty map decodes as if
// the attribute were missing, unless the nested type has a PreserveEmptyObject
// method returning true.
package ddbschema
