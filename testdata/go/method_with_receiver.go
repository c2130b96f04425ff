package main

// Receivers and parameters are declarations of the method scope.

type person struct{}

func (p *person) greet(name string) {
//    ^^               ^^
    msg := "hello, " + name
//  ^^                 ^^
    println(msg, p)
//          ^^   ^^
}
