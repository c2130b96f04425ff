package main

// An if statement's init clause declares names scoped to the statement.

var msg = "global message"
//  ^^here

func main() {
    if msg, ok := "local message", true; ok {
//     ^^   ^^                           ^^
        println(msg)
//              ^^
    }
    println(msg)
//          ^^here
}
