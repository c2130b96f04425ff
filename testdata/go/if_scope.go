package main

// The body of an if statement is a scope of its own.

var msg = "global message"
//  ^^here

func main() {
    if true {
        msg := "local message"
//      ^^
        println(msg)
//              ^^
    }
    println(msg)
//          ^^here
}
