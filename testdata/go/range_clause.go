package main

// A range clause declares both iteration variables in the loop scope.

var k = "global key"
//  ^^here
var v = "global value"
//  ^^here

func main() {
    for k, v := range map[string]string{} {
//      ^^ ^^
        print(k, v)
//            ^^ ^^
    }
    for i, item := range []string{} {
//      ^^ ^^
        print(i, item)
//            ^^ ^^
    }

    print(k)
//        ^^here
    println(v)
//          ^^here
}
