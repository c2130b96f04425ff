package main

// Switch and select clauses each open a scope.

func describe(v any) string {
//            ^^
    switch x := v.(type) {
//         ^^   ^^
    case int:
        return "int"
    case string:
        return x
//             ^^
    }
    switch n := 3; n {
//         ^^      ^^
    case 1:
        m := n
//      ^^   ^^
        println(m)
//              ^^
    default:
        println(m)
//              ^^here
    }
    return ""
}

func pump(ch chan int, done chan bool) {
//        ^^           ^^
    select {
    case v, ok := <-ch:
//       ^^ ^^      ^^
        println(v, ok)
//              ^^ ^^
    case <-done:
//         ^^
        return
    }
}
