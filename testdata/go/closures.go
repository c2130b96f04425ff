package main

// Function literals see the variables of every enclosing function.

var total = 0
//  ^^here

func counter(start int) func() int {
//           ^^
    count := start
//  ^^       ^^
    return func() int {
        count++
//      ^^
        total += count
//      ^^here   ^^
        return count
//             ^^
    }
}

func apply(fn func(x int) int, v int) int {
//         ^^      ^^skip      ^^
    return fn(v)
//         ^^ ^^
}
