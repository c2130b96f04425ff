package main

// Field names in selectors and keyed literals are not variables.

type person struct {
    Name string
//  ^^skip
    Age int
//  ^^skip
}

var age0 = 69
//  ^^here

var person0 = person{ Name: "Minh", Age: age0 }
//  ^^here            ^^skip        ^^skip
//                                       ^^here

func main() {
    print(person0.Name)
//        ^^here  ^^skip

    age1 := 420
//  ^^
    person1 := person{ Name: "Vu", Age: age1 }
//  ^^                 ^^skip      ^^skip
//                                      ^^
    print(person1.Name)
//        ^^      ^^skip
    counts := map[string]int{ "a": 1 }
//  ^^
    key := "b"
//  ^^
    lookup := map[string]int{ key: 2 }
//  ^^                        ^^
    print(counts, lookup)
//        ^^      ^^
}
