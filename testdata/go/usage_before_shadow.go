package main

// A use that precedes a local declaration still sees the outer binding.

var msg = "global message"
//  ^^here

func main() {
    println(msg)
//          ^^here
    msg := "local message"
//  ^^
    print(msg)
//        ^^
}
