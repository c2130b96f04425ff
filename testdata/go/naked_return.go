package main

// Named results are locals of the function body.

func sum(a int, b int) (result int) {
//       ^^     ^^      ^^
    result = a + b
//  ^^       ^^  ^^
    return
}

func main() {
    println(sum(1, 2))
//          ^^here
}
